package system

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
)

var ErrBadOsReleaseData = errors.New("bad os-release data")

// OsRelease has the os-release fields used to identify the distro
// (os-release format: https://www.freedesktop.org/software/systemd/man/os-release.html)
type OsRelease struct {
	Name       string
	Version    string
	ID         string
	IDLike     string
	VersionID  string
	PrettyName string
}

func NewOsRelease(data []byte) (*OsRelease, error) {
	if len(data) == 0 {
		return nil, ErrBadOsReleaseData
	}

	var info OsRelease
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		//values can be quoted with single or double quotes
		if len(val) > 1 &&
			((val[0] == '"' && val[len(val)-1] == '"') ||
				(val[0] == '\'' && val[len(val)-1] == '\'')) {
			val = val[1 : len(val)-1]
		}

		switch key {
		case "NAME":
			info.Name = val
		case "VERSION":
			info.Version = val
		case "ID":
			info.ID = val
		case "ID_LIKE":
			info.IDLike = val
		case "VERSION_ID":
			info.VersionID = val
		case "PRETTY_NAME":
			info.PrettyName = val
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return &info, nil
}
