/* Copyright 2025, Pulumi Corporation.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mcfitz2/pulumi-pve-backup/pkg/adapters"
	"github.com/mcfitz2/pulumi-pve-backup/pkg/config"
	"github.com/mcfitz2/pulumi-pve-backup/pkg/proxmox"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// app holds the state shared by the subcommands of one invocation.
type app struct {
	viper  *viper.Viper
	stdout io.Writer
	logger zerolog.Logger
}

// operations bundles the adapters of one invocation.
type operations struct {
	backup  *adapters.BackupAdapter
	restore *adapters.RestoreAdapter
	task    *adapters.TaskAdapter
}

// connection flags and the environment variables they fall back to
var envBindings = map[string]string{
	"api-url":      config.EnvAPIURL,
	"api-host":     config.EnvHost,
	"api-port":     config.EnvPort,
	"api-user":     config.EnvUser,
	"api-password": config.EnvPassword,
	"api-token":    config.EnvToken,
	"verify-ssl":   config.EnvVerifySSL,
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{
		viper:  viper.New(),
		stdout: stdout,
		logger: zerolog.New(zerolog.ConsoleWriter{Out: stderr}).With().Timestamp().Logger(),
	}

	var logLevel string

	root := &cobra.Command{
		Use:           "pvebackup",
		Short:         "Back up and restore Proxmox VE guests",
		Long:          `pvebackup triggers vzdump backups, lists backup archives and restores guests through the Proxmox VE API.`,
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, err := zerolog.ParseLevel(strings.ToLower(logLevel))
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", logLevel, err)
			}
			a.logger = a.logger.Level(level)
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.String("api-url", "", "full API URL, e.g. https://pve1:8006/api2/json")
	flags.String("api-host", "", "Proxmox VE host")
	flags.Int("api-port", config.DefaultPort, "Proxmox VE API port")
	flags.String("api-user", "", "user (root@pam) or API token ID (root@pam!backup)")
	flags.String("api-password", "", "password of the user")
	flags.String("api-token", "", "API token secret, used instead of a password")
	flags.Bool("verify-ssl", true, "validate the TLS certificate of the API")
	flags.Int("poll-interval", config.DefaultTaskPollInterval, "seconds between two task status reads")
	flags.Int("task-timeout", config.DefaultTaskTimeout, "seconds to wait for a task before giving up")
	flags.StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn or error")

	_ = a.viper.BindPFlags(flags)
	for key, env := range envBindings {
		_ = a.viper.BindEnv(key, env)
	}

	root.AddCommand(newBackupCmd(a), newListCmd(a), newRestoreCmd(a))
	return root
}

// loadConfig merges flags and environment into a validated connection configuration.
func (a *app) loadConfig() (*config.Config, error) {
	var cfg config.Config
	if err := a.viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}

	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a.logger.Debug().
		Str("url", cfg.BaseURL()).
		Str("user", cfg.PveUser).
		Bool("token", cfg.UsesToken()).
		Msg("Using Proxmox API")
	return &cfg, nil
}

func (a *app) operations() (*operations, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}

	client := adapters.NewProxmoxAdapter(cfg)
	return &operations{
		backup:  adapters.NewBackupAdapter(client),
		restore: adapters.NewRestoreAdapter(client),
		task:    adapters.NewTaskAdapter(client, client.WaitPolicy),
	}, nil
}

// print writes a result as a single JSON document.
func (a *app) print(result any) error {
	return writeJSON(a.stdout, result)
}

func writeJSON(w io.Writer, result any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// taskResult is the result of a job submission.
type taskResult struct {
	Changed bool                `json:"changed"`
	TaskID  string              `json:"task_id"`
	Kind    proxmox.GuestKind   `json:"kind,omitempty"`
	Status  *proxmox.TaskStatus `json:"status"`
}

// listResult is the result of a backup listing.
type listResult struct {
	Changed bool `json:"changed"`
	proxmox.ListBackupsOutputs
}

// failureResult reports an error. Task failures also carry the task and its last status.
type failureResult struct {
	Failed bool                `json:"failed"`
	Msg    string              `json:"msg"`
	TaskID string              `json:"task_id,omitempty"`
	Status *proxmox.TaskStatus `json:"status,omitempty"`
}

func writeFailure(w io.Writer, err error) {
	result := failureResult{Failed: true, Msg: err.Error()}

	var failed *proxmox.TaskFailedError
	var timeout *proxmox.TaskTimeoutError
	switch {
	case errors.As(err, &failed):
		result.TaskID = string(failed.UPID)
		result.Status = failed.Status
	case errors.As(err, &timeout):
		result.TaskID = string(timeout.UPID)
		result.Status = timeout.Last
	}

	_ = writeJSON(w, result)
}
