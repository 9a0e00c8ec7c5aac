package coap

import (
	"errors"
	"regexp"
	"strings"
)

const (
	kindFeed   = "f"
	kindConfig = "c"
)

var errUnknownPath = errors.New("path is not a device resource")

var devicePath = regexp.MustCompile(`^d/([^/]+)/(f|c)(?:/(.*))?$`)

// resource is a parsed d/<deviceId>/<kind>[/<rest>] path.
type resource struct {
	DeviceID string
	Kind     string
	Rest     string
}

func parsePath(path string) (resource, error) {
	m := devicePath.FindStringSubmatch(strings.TrimPrefix(path, "/"))
	if m == nil {
		return resource{}, errUnknownPath
	}
	return resource{
		DeviceID: m[1],
		Kind:     m[2],
		Rest:     strings.Trim(m[3], "/"),
	}, nil
}
