// Package compactor keeps conversation history bounded by replacing it with
// a model-generated summary plus a short tail of recent messages.
package compactor
