// Package device provides the bus device registry for cecbridge.
//
// Every connect cycle the engine scans the HDMI-CEC bus and reports
// each responding device. The registry persists those sightings to
// SQLite so controllers can query what has ever been on the bus, with
// names, physical addresses, and last-seen timestamps surviving
// restarts.
//
// # Key Types
//
//   - Record: One sighting of a bus device, keyed by logical address
//   - Repository: Persistence interface (SQLite implementation provided)
//   - Registry: cec.DeviceObserver implementation wired into the engine
//
// # Usage
//
//	repo, err := device.NewSQLiteRepository(db.DB) // *sql.DB from database.Open
//	if err != nil {
//	    return err
//	}
//	registry := device.NewRegistry(repo, logger)
//
//	// Pass as cec.Options.Observer; the engine calls DeviceSeen
//	// for each device found during bus scans.
package device
