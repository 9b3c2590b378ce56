package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	gmtls "github.com/dd0wney/cluso-graphmetrics/pkg/tls"
)

func newCertCmd() *cobra.Command {
	var (
		dir      string
		hosts    []string
		validFor time.Duration
	)

	cmd := &cobra.Command{
		Use:   "cert",
		Short: "Generate a self-signed certificate for the API",
		Long: `Generate a self-signed ECDSA certificate and key as server.crt and
server.key. Point server.tls.cert_file and key_file at them, and give the
certificate to HTTP runners as transport.http_ca_file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cert, err := gmtls.GenerateSelfSigned(hosts, validFor)
			if err != nil {
				return err
			}
			certFile := filepath.Join(dir, "server.crt")
			keyFile := filepath.Join(dir, "server.key")
			if err := gmtls.SaveCertificate(cert, certFile, keyFile); err != nil {
				return err
			}

			info, err := gmtls.Info(cert)
			if err != nil {
				return err
			}
			names := append(append([]string{}, info.DNSNames...), info.IPs...)
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s\nhosts: %s\nexpires: %s\n",
				certFile, keyFile, strings.Join(names, ", "), info.NotAfter.UTC().Format(time.RFC3339))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&dir, "dir", ".", "output directory")
	f.StringSliceVar(&hosts, "host", []string{"localhost", "127.0.0.1"}, "DNS names or IPs the certificate covers")
	f.DurationVar(&validFor, "valid-for", gmtls.DefaultValidity, "certificate lifetime")
	return cmd
}
