// Package extract turns uploaded files into plain text for the
// embedding stage. Plain-text formats are read verbatim; PDFs go
// through pdfcpu validation and per-page content extraction.
package extract
