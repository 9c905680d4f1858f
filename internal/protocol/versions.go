package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Version заявленный пиром тег сборки компонента
type Version struct {
	Component string
	Tag       string
}

// VersionList JSON-объект компонент→тег с сохранением порядка ключей.
// Значение, не являющееся строкой, становится пустым тегом.
type VersionList []Version

// MarshalJSON кодирует список как JSON-объект в исходном порядке
func (v VersionList) MarshalJSON() ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	for i, item := range v {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(item.Component)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(item.Tag)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON разбирает JSON-объект, сохраняя порядок ключей
func (v *VersionList) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("versions must be an object")
	}

	out := VersionList{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		component, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected versions key %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		var tag string
		if err := json.Unmarshal(raw, &tag); err != nil {
			tag = ""
		}

		out = append(out, Version{Component: component, Tag: tag})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*v = out
	return nil
}
