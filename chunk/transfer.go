// Package chunk implements the chunked bulk-transfer loop: reads and writes
// larger than the RPC library's maximum array length (spec.md §4.4) are
// split into a sequence of independent RPC calls, each carrying at most
// Ceiling bytes.
package chunk

// ChunkFunc performs one RPC-sized chunk of a transfer: buf is the window to
// fill (read) or drain (write) for this chunk, and offset is the absolute
// file offset the chunk targets. It returns the number of bytes the server
// actually transferred and a non-nil error only for a transport-level
// failure (a negative remote status may instead be reported as a negative n
// with a nil err -- see RunLoop).
type ChunkFunc func(buf []byte, offset int64) (n int, err error)

// RunLoop drives buf through do in Ceiling-sized windows starting at
// offset, implementing spec.md §4.4's read/write loop:
//
//   - while remaining > ceiling: issue a full ceiling-byte chunk; a short
//     chunk (n < ceiling) ends the loop and is treated as end-of-file/
//     short-write, not an error;
//   - the final iteration issues a chunk sized to the remaining bytes;
//   - each iteration rebuilds its own argument window fresh (a plain Go
//     slice, offset pair) rather than retaining a pointer across
//     iterations, resolving the interior-loop ambiguity spec.md §9 (i)
//     flags in the original;
//   - partial failure (an error after at least one earlier successful
//     chunk) returns the accumulated byte count with a nil error; a
//     failure before any chunk has succeeded returns the error.
func RunLoop(buf []byte, offset int64, ceiling int, do ChunkFunc) (int, error) {
	if ceiling <= 0 {
		panic("chunk: ceiling must be positive")
	}
	total := 0
	pos := 0
	remaining := len(buf)
	cur := offset

	for remaining > 0 {
		want := ceiling
		if remaining < want {
			want = remaining
		}
		n, err := do(buf[pos:pos+want], cur)
		if err != nil {
			if total > 0 {
				return total, nil
			}
			return 0, err
		}
		if n < 0 {
			if total > 0 {
				return total, nil
			}
			return n, nil
		}
		total += n
		if n < want {
			// Short chunk: end of file on read, short write on write.
			return total, nil
		}
		pos += want
		remaining -= want
		cur += int64(want)
	}
	return total, nil
}

// Ceiling is the transport's default maximum per-call array length. It
// mirrors the original implementation's MAX_ARRAY_LEN constant; servers and
// clients in this module share the same value so a chunk never exceeds
// what either side's RPC transport will carry in one call.
const Ceiling = 1<<16 - 1 // 65535, the largest length an ArgSpec's 16-bit length field holds
