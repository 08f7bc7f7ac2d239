// Package subtitles extracts embedded subtitle tracks as WebVTT.
//
// Extraction runs the external encoder once per request; cue timestamps can
// be shifted so subtitles line up with a transcoded stream that starts
// mid-file.
package subtitles
