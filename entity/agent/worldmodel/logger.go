package worldmodel

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "worldmodel")
