// Package dcui provides small Discord text helpers:
//   - message size limits and line chunking
//   - markdown and mention formatting
package dcui
