// Package mediatypes classifies files by extension and resolves MIME types.
//
// The explicit extension tables exist because generic inference
// under-specifies the audio/video container subtypes browsers require for
// codec negotiation. Extensions not covered by the tables fall back to
// content-based detection.
package mediatypes
