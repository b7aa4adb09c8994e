package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
)

// ErrNetwork는 응답을 받지 못한 요청을 나타낸다. errors.Is 로 판별한다
var ErrNetwork = errors.New("network error")

type Kind string

const (
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindServerError  Kind = "server_error"
	KindHTTP         Kind = "http_error"
)

func KindOf(status int) Kind {
	switch status {
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusInternalServerError:
		return KindServerError
	default:
		return KindHTTP
	}
}

// StatusError는 서버가 2xx 가 아닌 응답을 돌려준 경우
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Kind       Kind
	Message    string
	// Fields는 필드별 검증 오류 ({"username": ["..."]})
	Fields map[string][]string
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// FieldMessages는 필드 오류를 "field: message" 목록으로 펼친다
func (e *StatusError) FieldMessages() []string {
	keys := make([]string, 0, len(e.Fields))
	for key := range e.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var messages []string
	for _, key := range keys {
		for _, msg := range e.Fields[key] {
			if key == "non_field_errors" {
				messages = append(messages, msg)
				continue
			}
			messages = append(messages, key+": "+msg)
		}
	}
	return messages
}

// NetworkError는 요청은 보냈지만 응답을 받지 못한 경우 (연결 실패, 타임아웃)
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v: %v", e.Method, e.Path, ErrNetwork, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

func (e *NetworkError) Timeout() bool {
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// RequestError는 요청을 만드는 단계에서 실패한 경우. 원래 에러를 감싼다
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string {
	return "request configuration error: " + e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// AsStatusError는 err 체인에서 StatusError 를 찾는다
func AsStatusError(err error) (*StatusError, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr, true
	}
	return nil, false
}

func IsUnauthorized(err error) bool {
	statusErr, ok := AsStatusError(err)
	return ok && statusErr.Kind == KindUnauthorized
}

func newStatusError(method, path string, status int, body []byte) *StatusError {
	e := &StatusError{
		Method:     method,
		Path:       path,
		StatusCode: status,
		Kind:       KindOf(status),
		Body:       body,
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, key := range []string{"message", "detail", "error"} {
			if msg, ok := payload[key].(string); ok && strings.TrimSpace(msg) != "" {
				e.Message = msg
				break
			}
		}
		e.Fields = fieldErrors(payload)
	}

	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	if e.Message == "" {
		e.Message = "request failed"
	}
	return e
}

func fieldErrors(payload map[string]any) map[string][]string {
	fields := map[string][]string{}
	for key, value := range payload {
		switch v := value.(type) {
		case []any:
			for _, item := range v {
				if msg, ok := item.(string); ok {
					fields[key] = append(fields[key], msg)
				}
			}
		case string:
			if key == "message" || key == "detail" || key == "error" || key == "code" {
				continue
			}
			fields[key] = append(fields[key], v)
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}
