package evdev

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// defaultRefresh is reported for DRM outputs; sysfs does not expose the
// refresh rate of the current mode.
const defaultRefresh = 60000

// connector is one DRM connector as seen in sysfs. Key is the sysfs entry
// (card0-HDMI-A-1), unique across cards; Name drops the card prefix unless
// another card has a connector of the same name.
type connector struct {
	Key       string
	Name      string
	Connected bool
	Width     int32
	Height    int32
}

// readConnectors lists the connectors under dir (normally /sys/class/drm),
// sorted by name. Entries look like card0-HDMI-A-1 and hold a status file
// and a modes file whose first line is the preferred mode.
func readConnectors(dir string) ([]connector, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var conns []connector
	for _, e := range entries {
		name := e.Name()
		dash := strings.IndexByte(name, '-')
		if !strings.HasPrefix(name, "card") || dash < 0 {
			continue
		}
		status, err := os.ReadFile(filepath.Join(dir, name, "status"))
		if err != nil {
			continue
		}

		c := connector{
			Key:       name,
			Name:      name[dash+1:],
			Connected: strings.TrimSpace(string(status)) == "connected",
		}
		if c.Connected {
			c.Width, c.Height = preferredMode(filepath.Join(dir, name, "modes"))
		}
		conns = append(conns, c)
	}

	count := make(map[string]int, len(conns))
	for _, c := range conns {
		count[c.Name]++
	}
	for i, c := range conns {
		if count[c.Name] > 1 {
			conns[i].Name = c.Key
		}
	}

	sort.Slice(conns, func(i, j int) bool { return conns[i].Name < conns[j].Name })
	return conns, nil
}

func preferredMode(path string) (int32, int32) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		return 0, 0
	}
	var w, h int32
	if _, err := fmt.Sscanf(strings.TrimSpace(sc.Text()), "%dx%d", &w, &h); err != nil {
		return 0, 0
	}
	return w, h
}
