// Package wasmhost exposes the boundary to WebAssembly guests through wazero.
//
// The host module "pdf" exports:
//
//	init_context() -> i64
//	open_document(ctx i64, path_ptr i32, path_len i32) -> i64
//	page_count(doc i64) -> i32
//	page_size(doc i64, index i32, out_ptr i32) -> i32
//	document_title(doc i64, buf_ptr i32, buf_len i32) -> i32
//	close_document(doc i64) -> i32
//	destroy_context(ctx i64) -> i32
//
// Handles come back as positive i64 values. Every failure is reported as a
// negative boundary.Status in the result slot; nothing traps. page_size
// writes width and height as two little-endian f64 values at out_ptr.
// document_title copies at most buf_len bytes and returns the full length.
// Guests must export their memory.
package wasmhost
