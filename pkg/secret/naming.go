package secret

import (
	"strconv"
	"strings"
)

// NameFunc maps a target and namespace onto a storage key.
type NameFunc func(targetURI TargetURI, namespace string) string

// TargetName returns "{namespace}:{scheme}://{host}", appending ":{port}" when the port is
// not the scheme default. Path and query never contribute.
func TargetName(targetURI TargetURI, namespace string) string {
	var b strings.Builder
	b.WriteString(namespace)
	b.WriteByte(':')
	b.WriteString(targetURI.Scheme())
	b.WriteString("://")
	b.WriteString(targetURI.Host())
	if !targetURI.IsDefaultPort() && targetURI.Port() > 0 {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(targetURI.Port()))
	}
	return b.String()
}

// PathedTargetName is TargetName followed by the absolute path without trailing slashes.
func PathedTargetName(targetURI TargetURI, namespace string) string {
	name := TargetName(targetURI, namespace)
	path := strings.TrimRight(targetURI.AbsolutePath(), "/")
	return name + path
}
