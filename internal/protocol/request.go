// Package protocol описывает тела запросов /check и /download.
//
// Пиры отправляют один JSON-объект в поле формы "json" тела multipart/form-data.
// Декодер принимает также чистый application/json и, для совместимости со
// старыми пирами, любое тело, где после маркера "json" идет JSON-объект
// до последней закрывающей фигурной скобки.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
)

const (
	// FieldName имя поля формы, содержащего JSON-объект запроса
	FieldName = "json"
	// MaxBodySize максимальный размер тела запроса
	MaxBodySize = 1 << 20
)

var (
	// ErrNoPayload возвращается, если в теле нет JSON-объекта запроса
	ErrNoPayload = errors.New("request payload not found")
	// ErrBodyTooLarge возвращается для тела больше MaxBodySize
	ErrBodyTooLarge = errors.New("request body too large")
)

// Request JSON-объект запроса. Отсутствующие поля остаются nil.
type Request struct {
	Password *string      `json:"password,omitempty"`
	Versions *VersionList `json:"versions,omitempty"`
	Version  *string      `json:"version,omitempty"`
}

// NewCheckRequest создает запрос /check
func NewCheckRequest(password string, versions VersionList) *Request {
	return &Request{Password: &password, Versions: &versions}
}

// NewDownloadRequest создает запрос /download
func NewDownloadRequest(password, component string) *Request {
	return &Request{Password: &password, Version: &component}
}

// Decode читает тело HTTP-запроса и разбирает JSON-объект запроса
func Decode(r *http.Request) (*Request, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if len(body) > MaxBodySize {
		return nil, ErrBodyTooLarge
	}

	payload, err := extractPayload(r.Header.Get("Content-Type"), body)
	if err != nil {
		return nil, err
	}

	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("invalid request payload: %w", err)
	}
	return &req, nil
}

// Encode кодирует запрос как multipart/form-data с полем FieldName.
// Возвращает тело и значение заголовка Content-Type.
func Encode(req *Request) (*bytes.Buffer, string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, "", err
	}

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	if err := mw.WriteField(FieldName, string(payload)); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}

	return body, mw.FormDataContentType(), nil
}

func extractPayload(contentType string, body []byte) ([]byte, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err == nil {
		switch mediaType {
		case "multipart/form-data":
			if payload, err := multipartField(body, params["boundary"]); err == nil {
				return payload, nil
			}
		case "application/json":
			return body, nil
		}
	}

	return scanPayload(body)
}

func multipartField(body []byte, boundary string) ([]byte, error) {
	if boundary == "" {
		return nil, ErrNoPayload
	}

	mr := multipart.NewReader(bytes.NewReader(body), boundary)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, ErrNoPayload
		}
		if err != nil {
			return nil, err
		}

		if part.FormName() == FieldName {
			payload, err := io.ReadAll(part)
			part.Close()
			return payload, err
		}
		part.Close()
	}
}

// scanPayload нестрогий разбор: JSON-объект от маркера "json" до последней '}'
func scanPayload(body []byte) ([]byte, error) {
	end := bytes.LastIndexByte(body, '}')
	if end == -1 {
		return nil, ErrNoPayload
	}

	from := 0
	if marker := bytes.Index(body, []byte(`"`+FieldName+`"`)); marker != -1 {
		from = marker + len(FieldName) + 2
	} else if trimmed := bytes.TrimSpace(body); len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrNoPayload
	}

	start := bytes.IndexByte(body[from:], '{')
	if start == -1 || from+start > end {
		return nil, ErrNoPayload
	}

	return body[from+start : end+1], nil
}
