// Package provider contains the model API clients. Each provider knows
// how to translate conversation history and tool descriptors into its
// vendor wire format and back, for both blocking and streaming calls.
package provider
