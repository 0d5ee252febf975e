// Copyright 2024 The starkdev Authors
// This file is part of starkdev.

package rpcserver

import "fmt"

// Code is a JSON-RPC 2.0 error code, mirroring the starknet_* error space
// this server is a named, out-of-scope collaborator for (§1).
type Code int

const (
	CodeBlockNotFound            Code = 24
	CodeContractNotFound         Code = 20
	CodeClassHashNotFound        Code = 28
	CodeTxnHashNotFound          Code = 25
	CodeInvalidContinuationToken Code = 33
	CodePageSizeTooBig           Code = 31
	CodeProofLimitExceeded       Code = 10000
	CodeInternal                 Code = -32603
)

// Error is the JSON-RPC error object returned in every failing response.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message) }

func newError(code Code, msg string) *Error { return &Error{Code: code, Message: msg} }

// InvalidContinuationToken reports that a caller-supplied continuation
// token failed to decode (§4.1 "continuation tokens" pagination contract).
func InvalidContinuationToken() *Error {
	return newError(CodeInvalidContinuationToken, "the supplied continuation token is invalid or unknown")
}

// PageSizeTooBig reports a chunk_size request above the server's configured
// maximum.
func PageSizeTooBig(max int) *Error {
	return newError(CodePageSizeTooBig, fmt.Sprintf("requested page size exceeds the maximum of %d", max))
}

// ProofLimitExceeded reports a get_storage_proof request asking for more
// keys than the server is willing to prove in one call.
func ProofLimitExceeded(max int) *Error {
	return newError(CodeProofLimitExceeded, fmt.Sprintf("requested proof exceeds the maximum of %d keys", max))
}
