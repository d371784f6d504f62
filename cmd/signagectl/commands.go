package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-signage/internal/device"
	"github.com/nerrad567/gray-signage/internal/infrastructure/config"
	"github.com/nerrad567/gray-signage/internal/playlist"
	"github.com/nerrad567/gray-signage/internal/store"
)

// defaultConfigPath is used when neither --config nor GRAYSIGNAGE_CONFIG is set.
const defaultConfigPath = "configs/config.yaml"

// AdminStore is what the commands need from the document store.
// *store.MQTTStore implements it.
type AdminStore interface {
	store.Admin
	Forget(ctx context.Context, deviceID string) error
}

var _ AdminStore = (*store.MQTTStore)(nil)

// connectFunc opens the store. The returned func releases it.
type connectFunc func(ctx context.Context, cfg *config.Config) (AdminStore, func(), error)

// cli carries state shared by the subcommands of one invocation.
type cli struct {
	connect    connectFunc
	configPath string
	jsonOutput bool
	now        func() time.Time

	cfg     *config.Config
	admin   AdminStore
	release func()
}

// newRootCmd builds the command tree around connect. release closes the
// store opened by whichever command ran; cobra skips post-run hooks when
// a command fails, so callers release after Execute returns, error or not.
func newRootCmd(connect connectFunc) (root *cobra.Command, release func()) {
	c := &cli{connect: connect, now: time.Now}

	root = &cobra.Command{
		Use:   "signagectl",
		Short: "Pair screens and publish playlists",
		Long: `signagectl manages Gray Signage screens through the MQTT document store.

Screens announce themselves with a six-digit pairing code. Pairing writes
the screen's location assignment; publishing overwrites a location's
playlist. Screens pick up both changes live.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "configuration file (default $GRAYSIGNAGE_CONFIG or "+defaultConfigPath+")")
	root.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "print JSON instead of a table")

	root.AddCommand(
		c.devicesCmd(),
		c.pairCmd(),
		c.unpairCmd(),
		c.forgetCmd(),
		c.publishCmd(),
	)
	return root, c.teardown
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	path := c.configPath
	if path == "" {
		path = os.Getenv("GRAYSIGNAGE_CONFIG")
	}
	if path == "" {
		path = defaultConfigPath
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	c.cfg = cfg

	admin, release, err := c.connect(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	c.admin = admin
	c.release = release
	return nil
}

func (c *cli) teardown() {
	if c.release != nil {
		c.release()
		c.release = nil
	}
}

// ─── devices ───────────────────────────────────────────────────────

// deviceRow is one line of `devices` output.
type deviceRow struct {
	device.Record
	Online bool `json:"online"`
}

func (c *cli) devicesCmd() *cobra.Command {
	var location string

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List screens known to the store",
		Long: `List every screen that has published a registration, with its pairing
code, location and whether it sent a heartbeat within the online window.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			records, err := c.admin.Devices(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing devices: %w", err)
			}

			window := config.Seconds(c.cfg.Player.OnlineWindow)
			online, offline := store.OnlineRecords(records, c.now(), window)

			rows := make([]deviceRow, 0, len(records))
			for _, r := range online {
				rows = append(rows, deviceRow{Record: r, Online: true})
			}
			for _, r := range offline {
				rows = append(rows, deviceRow{Record: r})
			}
			rows = filterLocation(rows, location)
			sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })

			if c.jsonOutput {
				return printJSON(cmd.OutOrStdout(), rows)
			}
			return printDevices(cmd.OutOrStdout(), rows, c.now())
		},
	}
	cmd.Flags().StringVarP(&location, "location", "l", "", "only screens assigned to this location")
	return cmd
}

func filterLocation(rows []deviceRow, location string) []deviceRow {
	if location == "" {
		return rows
	}
	out := rows[:0]
	for _, r := range rows {
		if r.LocationID == location {
			out = append(out, r)
		}
	}
	return out
}

func printDevices(w io.Writer, rows []deviceRow, now time.Time) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No devices found")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DEVICE\tLOCATION\tCODE\tSTATUS\tLAST SEEN")
	for _, r := range rows {
		status := "offline"
		if r.Online {
			status = "online"
		}
		location, code := r.LocationID, "-"
		if location == "" {
			location = "(unpaired)"
			code = r.PairingCode
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, location, code, status, lastSeen(r.LastSeen, now))
	}
	return tw.Flush()
}

func lastSeen(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return now.Sub(t).Truncate(time.Second).String() + " ago"
}

// ─── pair / unpair / forget ────────────────────────────────────────

func (c *cli) pairCmd() *cobra.Command {
	var code, location string

	cmd := &cobra.Command{
		Use:   "pair",
		Short: "Assign the screen showing a pairing code to a location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rec, err := store.Pair(cmd.Context(), c.admin, code, location)
			switch {
			case errors.Is(err, store.ErrCodeNotFound):
				return fmt.Errorf("no unpaired screen is showing code %s", code)
			case errors.Is(err, store.ErrAmbiguousCode):
				return fmt.Errorf("more than one unpaired screen is showing code %s; restart one of them", code)
			case err != nil:
				return err
			}

			if c.jsonOutput {
				return printJSON(cmd.OutOrStdout(), rec)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Paired %s to %s\n", rec.ID, rec.LocationID)
			return err
		},
	}
	cmd.Flags().StringVarP(&code, "code", "c", "", "six-digit pairing code shown on the screen")
	cmd.Flags().StringVarP(&location, "location", "l", "", "location id to assign")
	_ = cmd.MarkFlagRequired("code")     //nolint:errcheck // flag exists
	_ = cmd.MarkFlagRequired("location") //nolint:errcheck // flag exists
	return cmd
}

func (c *cli) unpairCmd() *cobra.Command {
	var deviceID string

	cmd := &cobra.Command{
		Use:   "unpair",
		Short: "Remove a screen's location; it returns to its pairing screen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.admin.Unassign(cmd.Context(), deviceID); err != nil {
				return fmt.Errorf("unpairing %s: %w", deviceID, err)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Unpaired %s\n", deviceID)
			return err
		},
	}
	cmd.Flags().StringVarP(&deviceID, "device", "d", "", "device id")
	_ = cmd.MarkFlagRequired("device") //nolint:errcheck // flag exists
	return cmd
}

func (c *cli) forgetCmd() *cobra.Command {
	var deviceID string

	cmd := &cobra.Command{
		Use:   "forget",
		Short: "Delete a decommissioned screen's documents",
		Long: `Delete both halves of a screen's device document. A screen that is
still running republishes its registration on the next heartbeat.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.admin.Forget(cmd.Context(), deviceID); err != nil {
				return fmt.Errorf("forgetting %s: %w", deviceID, err)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Forgot %s\n", deviceID)
			return err
		},
	}
	cmd.Flags().StringVarP(&deviceID, "device", "d", "", "device id")
	_ = cmd.MarkFlagRequired("device") //nolint:errcheck // flag exists
	return cmd
}

// ─── publish ───────────────────────────────────────────────────────

func (c *cli) publishCmd() *cobra.Command {
	var location, file string

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Validate a playlist file and publish it to a location",
		Long: `Read a YAML or JSON playlist, check it (item ids present and unique,
positive durations, well-formed schedules) and overwrite the location's
playlist document. Nothing is published if any check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := readPlaylist(file)
			if err != nil {
				return err
			}
			if err := playlist.Validate(p); err != nil {
				return fmt.Errorf("%s is not valid:\n%w", file, err)
			}
			if err := c.admin.PublishPlaylist(cmd.Context(), location, p); err != nil {
				return fmt.Errorf("publishing to %s: %w", location, err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Published %q (%d items) to %s\n", p.Name, len(p.Content), location)
			return err
		},
	}
	cmd.Flags().StringVarP(&location, "location", "l", "", "location id")
	cmd.Flags().StringVarP(&file, "file", "f", "", "playlist file (YAML or JSON)")
	_ = cmd.MarkFlagRequired("location") //nolint:errcheck // flag exists
	_ = cmd.MarkFlagRequired("file")     //nolint:errcheck // flag exists
	return cmd
}

// readPlaylist decodes a playlist file without normalising it, so that
// missing item ids are reported instead of filled in.
func readPlaylist(path string) (playlist.Playlist, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is an operator-supplied flag
	if err != nil {
		return playlist.Playlist{}, fmt.Errorf("reading playlist: %w", err)
	}
	var p playlist.Playlist
	if err := yaml.Unmarshal(data, &p); err != nil {
		return playlist.Playlist{}, fmt.Errorf("%w: %s: %w", playlist.ErrInvalidDocument, path, err)
	}
	return p, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
