package diag

import (
	"fmt"
	"os"
	"os/user"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/earthboundkid/versioninfo/v2"
	log "github.com/sirupsen/logrus"
)

var sensitiveRegex = regexp.MustCompile(`(?i)(PASSWORD|API_KEY|ACCESS_KEY|SECRET|TOKEN)`)

func Version() string {
	return versioninfo.Short()
}

func ShowVersion() {
	log.WithField("version", Version()).Info("Version")
}

// MaskedEnvironment returns KEY=value pairs sorted by key, with the values of
// anything that looks like a credential replaced by asterisks.
func MaskedEnvironment(environ []string) []string {
	entries := make([]string, 0, len(environ))
	for _, entry := range environ {
		key, value, _ := strings.Cut(entry, "=")
		if sensitiveRegex.MatchString(key) {
			value = "********"
		}
		entries = append(entries, key+"="+value)
	}
	sort.Slice(entries, func(i, j int) bool {
		keyI, _, _ := strings.Cut(entries[i], "=")
		keyJ, _, _ := strings.Cut(entries[j], "=")
		return keyI < keyJ
	})
	return entries
}

func EnvironmentVars() {
	log.Debug("Environment variables")
	for _, entry := range MaskedEnvironment(os.Environ()) {
		log.Debugf("  %s", entry)
	}
}

func UserInfo() {
	fields := log.Fields{"pid": os.Getpid()}
	currentUser, err := user.Current()
	if err != nil {
		log.WithError(err).Warn("Error getting current user")
	} else {
		fields["user"] = fmt.Sprintf("uid=%s(%s) gid=%s", currentUser.Uid, currentUser.Username, currentUser.Gid)
	}
	groups, err := os.Getgroups()
	if err != nil {
		log.WithError(err).Warn("Error getting groups")
	} else {
		groupNames := make([]string, 0, len(groups))
		for _, gid := range groups {
			group, err := user.LookupGroupId(strconv.Itoa(gid))
			if err != nil {
				groupNames = append(groupNames, strconv.Itoa(gid)) // Append ID if name lookup fails
			} else {
				groupNames = append(groupNames, fmt.Sprintf("%s(%s)", group.Name, group.Gid))
			}
		}
		fields["groups"] = groupNames
	}
	log.WithFields(fields).Info("Process info")
}
