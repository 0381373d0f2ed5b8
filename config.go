package ghostrouter

import (
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
)

type TLSConfig struct {
	CertPath   string `mapstructure:"cert_path"`
	ServerName string `mapstructure:"server_name"`

	tlsConfig *tls.Config
}

func (this *TLSConfig) BuildConfig() (*tls.Config, error) {
	if this.tlsConfig == nil {
		certPool := x509.NewCertPool()
		pem, err := os.ReadFile(this.CertPath)
		if err != nil {
			return nil, err
		}

		if ok := certPool.AppendCertsFromPEM(pem); !ok {
			return nil, errors.New("unable to append pem")
		}

		this.tlsConfig = &tls.Config{
			RootCAs:    certPool,
			ServerName: this.ServerName,
		}
	}

	return this.tlsConfig, nil
}

// DatabaseConfig describes the MySQL server whose binlog is routed.
type DatabaseConfig struct {
	Host string `mapstructure:"host"`
	Port uint16 `mapstructure:"port"`
	User string `mapstructure:"user"`
	Pass string `mapstructure:"pass"`

	TLS *TLSConfig `mapstructure:"tls"`

}

func (c *DatabaseConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is empty")
	}

	if c.Port == 0 {
		return fmt.Errorf("port is not specified")
	}

	if c.User == "" {
		return fmt.Errorf("user is empty")
	}

	return nil
}

func (c *DatabaseConfig) MySQLConfig() (*mysql.Config, error) {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Pass
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
	cfg.Timeout = 10 * time.Second

	if c.TLS != nil {
		tlsConfig, err := c.TLS.BuildConfig()
		if err != nil {
			return nil, err
		}

		const tlsConfigName = "ghostrouter"
		if err := mysql.RegisterTLSConfig(tlsConfigName, tlsConfig); err != nil {
			return nil, err
		}
		cfg.TLSConfig = tlsConfigName
	}

	return cfg, nil
}

func (c *DatabaseConfig) SqlDB(logger *logrus.Entry) (*sql.DB, error) {
	cfg, err := c.MySQLConfig()
	if err != nil {
		return nil, err
	}

	dsn := cfg.FormatDSN()
	if logger != nil {
		logger.WithField("addr", cfg.Addr).Info("connecting to the database")
	}

	return sql.Open("mysql", dsn)
}
