// Package chunker divides document text into overlapping chunks for indexing.
//
// Chunks are bounded in length and prefer to end at natural text boundaries so
// that a legal article or a paragraph is not cut in the middle of a sentence
// when it can be avoided.
//
// # Basic Usage
//
//	c, err := chunker.New(chunker.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, chunk := range c.ChunkDocument(doc) {
//	    fmt.Printf("%s (%d chars)\n", chunk.ChunkID, len(chunk.Text))
//	}
//
// # Chunking Strategy
//
// The text is trimmed and scanned with a window of ChunkSize characters.
// Inside each window the chunker looks, in order, for the last:
//   - paragraph break ("\n\n")
//   - line break ("\n")
//   - sentence end (". ")
//   - clause end ("; ")
//
// A boundary is only used when it starts more than 200 characters into the
// window; otherwise the window is cut at its full length. Consecutive windows
// overlap by Overlap characters.
//
// # Identifiers
//
// ChunkDocument assigns each chunk the identifier computed by
// types.ComputeChunkID. Identifiers depend only on the document ID, the chunk
// position and the chunk text, so chunking the same corpus twice yields the
// same identifiers in the same order.
//
// # Lengths
//
// Sizes are counted in Unicode code points, not bytes, so accented French
// text is chunked the same way regardless of its UTF-8 encoding width.
package chunker
