package arquivo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/marcelojr/votos-addon/internal/domain"
)

// codec serializa o conjunto no formato legível escolhido pela extensão do arquivo.
type codec interface {
	encode(c domain.Conjunto) ([]byte, error)
	decode(data []byte, c *domain.Conjunto) error
}

func codecPara(path string) (codec, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", "":
		return jsonCodec{}, nil
	case ".yaml", ".yml":
		return yamlCodec{}, nil
	default:
		return nil, fmt.Errorf("arquivo: extensao nao suportada %q", filepath.Ext(path))
	}
}

type jsonCodec struct{}

// encode grava <, > e & literais, sem os escapes \u003c do encoding/json.
func (jsonCodec) encode(c domain.Conjunto) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (jsonCodec) decode(data []byte, c *domain.Conjunto) error {
	return json.Unmarshal(data, c)
}

type yamlCodec struct{}

func (yamlCodec) encode(c domain.Conjunto) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (yamlCodec) decode(data []byte, c *domain.Conjunto) error {
	return yaml.Unmarshal(data, c)
}
