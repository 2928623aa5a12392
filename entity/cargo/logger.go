package cargo

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "cargo")
