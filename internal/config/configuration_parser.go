package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

type configuration interface {
	Config | map[string]interface{}
}

func readTextFile(filepathName string) ([]byte, error) {
	return os.ReadFile(filepath.Clean(filepathName))
}

// ConfigurationParser decodes the YAML file over configEntity, so unset keys keep their values.
func ConfigurationParser[T configuration](filepathName string, configEntity T) (T, error) {
	fileContent, err := readTextFile(filepathName)
	if err != nil {
		return configEntity, err
	}

	err = yaml.Unmarshal(fileContent, &configEntity)
	return configEntity, err
}
