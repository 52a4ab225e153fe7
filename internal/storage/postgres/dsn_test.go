package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/casegen/casegen-backend/config"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DatabaseConfig
		want string
	}{
		{
			name: "plain",
			cfg:  config.DatabaseConfig{Host: "db", Port: 5432, User: "app", Password: "secret", Name: "casegen"},
			want: "host=db port=5432 user=app password=secret dbname=casegen sslmode=disable",
		},
		{
			name: "empty password and ssl",
			cfg:  config.DatabaseConfig{Host: "db", Port: 5433, User: "app", Name: "casegen", SSLMode: "require"},
			want: "host=db port=5433 user=app password='' dbname=casegen sslmode=require",
		},
		{
			name: "password with space and quote",
			cfg:  config.DatabaseConfig{Host: "db", Port: 5432, User: "app", Password: `it's x`, Name: "casegen"},
			want: `host=db port=5432 user=app password='it\'s x' dbname=casegen sslmode=disable`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DSN(&tt.cfg))
		})
	}
}
