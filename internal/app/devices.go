package app

import (
	"fmt"
	"io"
	"text/tabwriter"

	hostmalgo "github.com/tphakala/audioroute/internal/host/malgo"
)

// PrintDevices lists the devices of backend.
func PrintDevices(w io.Writer, backend string) error {
	devices, err := hostmalgo.ListDevices(backend)
	if err != nil {
		return err
	}
	return writeDevices(w, devices)
}

func writeDevices(w io.Writer, devices []hostmalgo.DeviceInfo) error {
	if len(devices) == 0 {
		_, err := fmt.Fprintln(w, "no audio devices found")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "KIND\tINDEX\tDEFAULT\tNAME\tID")
	for _, d := range devices {
		def := ""
		if d.IsDefault {
			def = "*"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", d.Kind, d.Index, def, d.Name, d.ID)
	}
	return tw.Flush()
}
