package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"assistant-voice-trigger/audio_device"
	"assistant-voice-trigger/hid_transport"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List microphones and matching HID devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(afero.NewOsFs())
		if err != nil {
			return err
		}

		device := audio_device.NewPortAudio()
		defer device.Terminate()

		mics, err := device.Microphones()
		if err != nil {
			return fmt.Errorf("listing microphones: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

		fmt.Fprintln(w, "INDEX\tMICROPHONE\tCHANNELS\tSAMPLE RATE")

		for _, mic := range mics {
			fmt.Fprintf(w, "%d\t%s\t%d\t%.0f\n", mic.Index, mic.Name, mic.Channels, mic.SampleRate)
		}

		w.Flush()

		hids, err := hid_transport.Enumerate(cfg.HID.VendorID, cfg.HID.ProductID)
		if err != nil {
			return fmt.Errorf("listing HID devices: %w", err)
		}

		fmt.Println()

		if len(hids) == 0 {
			fmt.Printf("No HID device %04x:%04x found\n", cfg.HID.VendorID, cfg.HID.ProductID)

			return nil
		}

		fmt.Fprintln(w, "PATH\tMANUFACTURER\tPRODUCT\tSERIAL")

		for _, d := range hids {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Path, d.Manufacturer, d.Product, d.Serial)
		}

		return w.Flush()
	},
}
