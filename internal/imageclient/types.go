// Package imageclient wraps the optional hero-image generation call
// (C4): generate(prompt, reference_image?, aspect_ratio, size) -> bytes,
// in both native (SDK-shaped) and proxy (chat-completions-shaped) modes.
package imageclient

import "context"

// Request is one image-generation request.
type Request struct {
	Prompt        string
	ReferenceImage []byte // optional; embedded as base64 in proxy mode
	AspectRatio   string // e.g. "16:9"
	Size          string // e.g. "1K", "2K"
}

// Client generates a single image and returns its raw bytes. NewNative
// and NewProxy always return a client or an error; cmd/briefing leaves
// the orchestrator's Client nil when the image section is unconfigured
// or its client fails to initialise, and the orchestrator then skips
// phase 4.7.
type Client interface {
	Generate(ctx context.Context, req Request) ([]byte, error)
}
