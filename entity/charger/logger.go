package charger

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "charger")
