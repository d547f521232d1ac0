// Package exporter renders relations as downloadable files.
//
// Two surfaces are provided. RenderCSV and RenderXLSX produce in-memory
// payloads for the portal export endpoints, and CSVWriter writes relations
// to files under the exports directory for command line tooling. CSV output
// carries a UTF-8 BOM so Excel opens teacher names and syllabus labels
// correctly.
package exporter
