// Package logging provides a small leveled logger for the media converter.
//
// Levels are DEBUG, INFO, WARN and ERROR (plus FATAL, which exits). The
// initial level comes from DEBUG or LOG_LEVEL and can be overridden once the
// configuration file has been read with SetLevel.
//
// Component values prefix messages with a subsystem name:
//
//	var log = logging.Component("engine")
//	log.Info("loaded in %v", d)
package logging
