// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud sends chat-completion requests to an OpenAI-compatible
// endpoint and hands the response body to a stream.Decoder.
//
// # Key Types
//
//   - Client: issues one POST per turn, with an optional per-call proxy
//   - ChatRequest: the JSON payload {model, messages, max_tokens, temperature, stream}
//   - HTTPError: a non-2xx response
//
// # Usage
//
//	client := cloud.NewClient(logger)
//	dec, err := client.Stream(ctx, engine, cloud.NewChatRequest(engine, messages))
//	if err != nil {
//	    return err
//	}
//	defer dec.Close()
//	for chunk := range dec.Chunks() {
//	    ...
//	}
//
// # Security
//
// The API key is read from the token file for every request and is never
// logged. Only the method, path, status and duration of a request are.
package cloud
