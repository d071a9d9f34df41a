package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/rowjay/sitebak/internal/cryptoutil"
)

// EncryptConfigFile encrypts a config file with the provided key. The input must parse
// as yaml, toml or json (chosen by extension) so a broken file is never sealed.
func EncryptConfigFile(inputPath, outputPath, key string) error {
	plain, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}
	vp := viper.New()
	vp.SetConfigType(configTypeFromPath(inputPath))
	if err := vp.ReadConfig(bytes.NewReader(plain)); err != nil {
		return fmt.Errorf("parse %s: %w", inputPath, err)
	}
	parsed, err := cryptoutil.Key(cryptoutil.ConfigKeySetting, key)
	if err != nil {
		return err
	}
	sealed, err := cryptoutil.SealConfig(plain, parsed)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, sealed, 0o600)
}
