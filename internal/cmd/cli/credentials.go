package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/clambin/wunderground/internal/cmd/config"
	"github.com/clambin/wunderground/internal/configuration"
	"github.com/clambin/wunderground/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var credentialsCmd = cobra.Command{
	Use:   "credentials",
	Short: "Show the keys and URLs acquired by earlier runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := configuration.Load(viper.GetViper())
		if err != nil {
			return err
		}
		s, err := store.New(cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			return fmt.Errorf("store: %w", err)
		}
		if c, ok := s.(io.Closer); ok {
			defer func() { _ = c.Close() }()
		}
		return config.ShowCredentials(cmd.Context(), s, cfg.Location, cfg.Station, encoder(cmd.OutOrStdout(), cfg.Output))
	},
}

func encoder(w io.Writer, format string) config.Encoder {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc
	}
	return yaml.NewEncoder(w)
}
