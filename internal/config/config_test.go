package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Family: []string{"Alice Johnson", "Bob Johnson"},
		HSA:    HSAConfig{StartDate: "2023-01-01", OOPMax: 6000},
		Store:  StoreConfig{Driver: "sheet", Path: "hsa_ledger.csv"},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_Family(t *testing.T) {
	c := validConfig()
	c.Family = nil
	assert.Error(t, c.Validate())

	c = validConfig()
	c.Family = []string{"Alice Johnson", "  "}
	assert.Error(t, c.Validate())
}

func TestValidate_StartDate(t *testing.T) {
	c := validConfig()
	c.HSA.StartDate = "01/01/2023"
	assert.Error(t, c.Validate())
}

func TestValidate_OOPMax(t *testing.T) {
	c := validConfig()
	c.HSA.OOPMax = 0
	assert.Error(t, c.Validate())
}

func TestValidate_Driver(t *testing.T) {
	for _, driver := range []string{"sheet", "sqlite", "postgres"} {
		c := validConfig()
		c.Store.Driver = driver
		assert.NoError(t, c.Validate(), driver)
	}
	c := validConfig()
	c.Store.Driver = "mysql"
	assert.Error(t, c.Validate())
}

func TestStartTime(t *testing.T) {
	c := validConfig()
	want, _ := time.Parse("2006-01-02", "2023-01-01")
	assert.Equal(t, want, c.StartTime())
}
