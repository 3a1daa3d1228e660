package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fabric-dosgi/dosgi-go/pkg/cert"
)

// CertParams configures GenerateCerts.
type CertParams struct {
	Dir      string
	Name     string
	Hosts    []string
	Validity time.Duration
}

func newCertCmd() *cobra.Command {
	p := CertParams{}

	cmd := &cobra.Command{
		Use:   "cert",
		Short: "Create a development CA and an endpoint certificate for tls:// URIs",
		Long: `Cert creates <dir>/ca.pem and <dir>/ca.key on first use and reuses them
afterwards, then issues <dir>/<name>.pem and <dir>/<name>.key. The printed
tls section can be pasted into the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := GenerateCerts(p)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(struct {
				TLS *TLSFiles `yaml:"tls"`
			}{files})
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	cmd.Flags().StringVar(&p.Dir, "dir", ".", "Directory for the PEM files")
	cmd.Flags().StringVar(&p.Name, "name", "node", "File name and common name of the endpoint certificate")
	cmd.Flags().StringSliceVar(&p.Hosts, "host", []string{"127.0.0.1", "localhost"}, "IP address or DNS name for the certificate")
	cmd.Flags().DurationVar(&p.Validity, "validity", cert.DefaultValidity, "Lifetime of the endpoint certificate")
	return cmd
}

// GenerateCerts issues an endpoint certificate from the CA in p.Dir,
// creating the CA if it does not exist yet.
func GenerateCerts(p CertParams) (*TLSFiles, error) {
	if p.Name == "" {
		return nil, errors.New("certificate name is required")
	}
	if err := os.MkdirAll(p.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("create certificate directory: %w", err)
	}

	caCert := filepath.Join(p.Dir, "ca.pem")
	caKey := filepath.Join(p.Dir, "ca.key")

	ca, err := cert.LoadIdentity(caCert, caKey)
	if errors.Is(err, fs.ErrNotExist) {
		ca, err = cert.NewCA("dosgi development CA", 10*365*24*time.Hour)
		if err == nil {
			err = ca.WriteFiles(caCert, caKey)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("certificate authority: %w", err)
	}

	leaf, err := ca.Issue(cert.LeafOptions{
		CommonName: p.Name,
		Hosts:      p.Hosts,
		Validity:   p.Validity,
	})
	if err != nil {
		return nil, err
	}

	files := &TLSFiles{
		CertFile: filepath.Join(p.Dir, p.Name+".pem"),
		KeyFile:  filepath.Join(p.Dir, p.Name+".key"),
		CAFile:   caCert,
	}
	if err := leaf.WriteFiles(files.CertFile, files.KeyFile); err != nil {
		return nil, err
	}
	return files, nil
}
