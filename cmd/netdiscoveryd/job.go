package main

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fusioninventory/netdiscovery/internal/coordinator"
	"github.com/fusioninventory/netdiscovery/internal/model"
)

// jobFile is the local stand-in for the server's job prolog (ranges,
// credentials, dictionary). The real prolog arrives over an XML/HTTP
// transport that is out of scope for this core; this YAML shape exists
// only so the entrypoint can drive a job end to end without that
// collaborator.
type jobFile struct {
	Ranges []struct {
		Start  string `yaml:"start"`
		End    string `yaml:"end"`
		Entity string `yaml:"entity"`
	} `yaml:"ranges"`
	Credentials []struct {
		ID           string `yaml:"id"`
		Version      string `yaml:"version"`
		Community    string `yaml:"community"`
		Username     string `yaml:"username"`
		AuthPassword string `yaml:"auth_password"`
		AuthProtocol string `yaml:"auth_protocol"`
		PrivPassword string `yaml:"priv_password"`
		PrivProtocol string `yaml:"priv_protocol"`
	} `yaml:"credentials"`
	Dico map[string]struct {
		ModelSNMP string `yaml:"modelsnmp"`
		Type      string `yaml:"type"`
		Serial    string `yaml:"serial"`
		MAC       string `yaml:"mac"`
		MACDyn    string `yaml:"macdyn"`
	} `yaml:"dico"`
	DicoHash string `yaml:"dico_hash"`
}

// loadJob reads path and converts it into coordinator.JobOptions. A
// missing path yields an empty job (no ranges, no credentials) rather
// than an error, so the agent can still demonstrate the dictionary and
// health surfaces with nothing to scan.
func loadJob(path string) (coordinator.JobOptions, error) {
	if path == "" {
		return coordinator.JobOptions{}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return coordinator.JobOptions{}, nil
		}
		return coordinator.JobOptions{}, err
	}
	defer f.Close()

	var jf jobFile
	if err := yaml.NewDecoder(f).Decode(&jf); err != nil {
		return coordinator.JobOptions{}, err
	}

	opts := coordinator.JobOptions{DicoHash: jf.DicoHash}

	for _, r := range jf.Ranges {
		opts.Ranges = append(opts.Ranges, model.Range{Start: r.Start, End: r.End, Entity: r.Entity})
	}
	for _, c := range jf.Credentials {
		opts.Credentials = append(opts.Credentials, model.Credential{
			ID:           c.ID,
			Version:      model.CredentialVersion(c.Version),
			Community:    c.Community,
			Username:     c.Username,
			AuthPassword: c.AuthPassword,
			AuthProtocol: c.AuthProtocol,
			PrivPassword: c.PrivPassword,
			PrivProtocol: c.PrivProtocol,
		})
	}
	if len(jf.Dico) > 0 {
		opts.Dico = make(map[string]model.Model, len(jf.Dico))
		for pattern, m := range jf.Dico {
			opts.Dico[pattern] = model.Model{
				ModelSNMP: m.ModelSNMP,
				Type:      m.Type,
				Serial:    m.Serial,
				MAC:       m.MAC,
				MACDyn:    m.MACDyn,
			}
		}
	}
	return opts, nil
}
