// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream decodes chat-completion responses into chunks.
//
// The input is either a server-sent event stream of "data: {json}" lines
// terminated by "data: [DONE]", or a plain JSON body. Each record becomes a
// Chunk holding either reasoning text or answer text.
//
// Reads are decoded as UTF-8 with multi-byte characters reassembled across
// read boundaries, then split into lines. A line whose JSON does not parse is
// kept and prepended to the next line, which repairs records split across two
// reads. When the joined line still fails, the kept text is reported through
// OnDecodeError and decoding continues with the next line on its own.
//
//	dec := stream.NewDecoder(ctx, resp.Body)
//	defer dec.Close()
//	for chunk := range dec.Chunks() {
//	    fmt.Print(chunk.Text)
//	}
//	if err := dec.Err(); err != nil {
//	    return err
//	}
package stream
