package config

import (
	"os"
	"path/filepath"
	"runtime"
	"text/template"

	"emperror.dev/errors"
	"github.com/apex/log"
)

const logrotateDirectory = "/etc/logrotate.d"

var logrotateTemplate = template.Must(template.New("logrotate").Parse(`{{.LogDirectory}}/sgo.log {
    size 10M
    compress
    delaycompress
    dateext
    maxage 7
    missingok
    notifempty
    postrotate
        /usr/bin/systemctl kill -s HUP sgo.service >/dev/null 2>&1 || true
    endscript
}`))

// EnableLogRotation writes a logrotate file for sgo to the system logrotate
// configuration directory if one exists and a logrotate file is not found.
func EnableLogRotation() error {
	if runtime.GOOS != "linux" {
		return nil
	}
	if !_config.System.EnableLogRotate {
		log.Info("skipping log rotate configuration, disabled in sgo config file")
		return nil
	}

	if st, err := os.Stat(logrotateDirectory); err != nil && !os.IsNotExist(err) {
		return err
	} else if (err != nil && os.IsNotExist(err)) || !st.IsDir() {
		return nil
	}
	p := filepath.Join(logrotateDirectory, "sgo")
	if _, err := os.Stat(p); err == nil || !os.IsNotExist(err) {
		return err
	}

	log.Info("no log rotation configuration found: adding file now")
	f, err := os.Create(p)
	if err != nil {
		return err
	}
	defer f.Close()

	return errors.Wrap(logrotateTemplate.Execute(f, _config.System), "config: failed to write logrotate to disk")
}
