package database

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-api/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host:     "db",
		Port:     5433,
		User:     "registrar",
		Password: "pw",
		Name:     "uni",
		SSLMode:  "disable",
	})
	assert.Equal(t, "postgres://registrar:pw@db:5433/uni?application_name=uni-api&sslmode=disable", dsn)
}

func TestDSNEscapesPassword(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "registrar", Password: "p@ss word/#1", Name: "uni", SSLMode: "require"})

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	pw, ok := u.User.Password()
	require.True(t, ok)
	assert.Equal(t, "p@ss word/#1", pw)
	assert.Equal(t, "require", u.Query().Get("sslmode"))
}
