// Package protocol defines the messages exchanged between a script-side
// client and the engine-side dispatcher, and their binary encoding.
//
// Direction is fixed per message type: Request flows client to server;
// Response, ErrorResponse and Event flow server to client. Every terminal
// response carries the RequestID of the request it answers.
//
// Wire format (all integers are varints unless noted):
//
//	message  := tag body
//	Request  := 0x01 id[16] command:string argc:uvarint value*
//	Response := 0x10 id[16] value
//	Error    := 0x11 id[16] message:string
//	Event    := 0x12 name:string seq:varint
//
//	value    := 0x00                      unit
//	          | 0x01 zigzag-varint        integer
//	          | 0x02 f32 little-endian    float
//	          | 0x03 0x00|0x01            boolean
//	          | 0x04 string               string
//	          | 0x05 len:uvarint value*   list
//	string   := len:uvarint utf8-bytes
//
// Decoding is strict: trailing bytes, unknown tags and truncated input are
// errors.
package protocol
