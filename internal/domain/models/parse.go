package models

import (
	"encoding/json"
	"errors"
	"strings"
)

type ParseKind int

const (
	ParseKindParsed ParseKind = iota
	ParseKindRaw
	ParseKindError
)

// ParseResult is the outcome of decoding structured AI output:
// exactly one of Parsed, Raw or ParseError.
type ParseResult[T any] struct {
	Kind  ParseKind
	Value T
	Raw   string
	Err   error
}

func Parsed[T any](v T) ParseResult[T] {
	return ParseResult[T]{Kind: ParseKindParsed, Value: v}
}

func Raw[T any](s string) ParseResult[T] {
	return ParseResult[T]{Kind: ParseKindRaw, Raw: s}
}

func ParseError[T any](err error) ParseResult[T] {
	return ParseResult[T]{Kind: ParseKindError, Err: err}
}

var ErrEmptyContent = errors.New("empty model output")

// ParseStructured extracts a JSON object from model output.
// Markdown fences are stripped. Text with no JSON object at all is Raw;
// an object that does not decode into T is a ParseError.
func ParseStructured[T any](content string) ParseResult[T] {
	text := strings.TrimSpace(content)
	if text == "" {
		return ParseError[T](ErrEmptyContent)
	}

	text = stripFence(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Raw[T](strings.TrimSpace(content))
	}

	var v T
	if err := json.Unmarshal([]byte(text[start:end+1]), &v); err != nil {
		return ParseError[T](err)
	}
	return Parsed(v)
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}
