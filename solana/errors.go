package solana

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// JSON-RPC error codes used by Solana nodes.
const (
	CodeParseError            = -32700
	CodeInvalidRequest        = -32600
	CodeMethodNotFound        = -32601
	CodeInvalidParams         = -32602
	CodeInternalError         = -32603
	CodeSendTransactionFailed = -32002
)

// RPCError is the error object of a JSON-RPC response.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Unwrap exposes the transaction error carried by a failed preflight, if any.
func (e *RPCError) Unwrap() error {
	if e.Code != CodeSendTransactionFailed || len(e.Data) == 0 {
		return nil
	}
	var data struct {
		Err  json.RawMessage `json:"err"`
		Logs []string        `json:"logs"`
	}
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil
	}
	txErr := ParseTransactionError(data.Err)
	if txErr == nil {
		return nil
	}
	txErr.Logs = data.Logs
	return txErr
}

// TransactionError describes why the runtime rejected a transaction.
type TransactionError struct {
	// Kind is the runtime error name, or for instruction errors the inner
	// variant such as "Custom" or "InvalidArgument".
	Kind             string
	InstructionIndex int
	Custom           *uint32
	Logs             []string
	Raw              json.RawMessage
}

func (e *TransactionError) Error() string {
	switch {
	case e.Custom != nil:
		return fmt.Sprintf("instruction %d failed: custom program error: %#x", e.InstructionIndex, *e.Custom)
	case e.InstructionIndex >= 0:
		return fmt.Sprintf("instruction %d failed: %s", e.InstructionIndex, e.Kind)
	default:
		return fmt.Sprintf("transaction failed: %s", e.Kind)
	}
}

// InstructionErr builds the wire form of an instruction failure with a custom code.
func InstructionErr(index int, custom uint32) json.RawMessage {
	raw, _ := json.Marshal(map[string]any{
		"InstructionError": []any{index, map[string]uint32{"Custom": custom}},
	})
	return raw
}

// InstructionErrKind builds the wire form of a builtin instruction failure.
func InstructionErrKind(index int, kind string) json.RawMessage {
	raw, _ := json.Marshal(map[string]any{
		"InstructionError": []any{index, kind},
	})
	return raw
}

// ParseTransactionError decodes the "err" field of a status or a preflight
// result. It returns nil for null or empty input.
func ParseTransactionError(raw json.RawMessage) *TransactionError {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	out := &TransactionError{InstructionIndex: -1, Raw: raw}

	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		out.Kind = name
		return out
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		out.Kind = string(raw)
		return out
	}
	ixRaw, ok := obj["InstructionError"]
	if !ok {
		for k := range obj {
			out.Kind = k
		}
		return out
	}

	var pair []json.RawMessage
	if err := json.Unmarshal(ixRaw, &pair); err != nil || len(pair) != 2 {
		out.Kind = "InstructionError"
		return out
	}
	if err := json.Unmarshal(pair[0], &out.InstructionIndex); err != nil {
		out.InstructionIndex = -1
	}
	if err := json.Unmarshal(pair[1], &name); err == nil {
		out.Kind = name
		return out
	}
	var inner map[string]json.RawMessage
	if err := json.Unmarshal(pair[1], &inner); err == nil {
		if c, ok := inner["Custom"]; ok {
			var code uint32
			if json.Unmarshal(c, &code) == nil {
				out.Kind = "Custom"
				out.Custom = &code
				return out
			}
		}
		for k := range inner {
			out.Kind = k
		}
	}
	return out
}

// CustomErrorCode extracts a program's custom error code from anywhere in err's chain.
func CustomErrorCode(err error) (uint32, bool) {
	var txErr *TransactionError
	if errors.As(err, &txErr) && txErr.Custom != nil {
		return *txErr.Custom, true
	}
	return 0, false
}
