// Package textutil provides text helpers shared by the upload path and the
// extraction stage: filename sanitization, Unicode normalization of extracted
// document text, and display titles derived from filenames.
package textutil
