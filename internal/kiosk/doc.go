// Package kiosk supervises the renderer process on the screen.
//
// A signage box usually runs a browser in kiosk mode pointed at the
// local renderer feed. The Supervisor starts it, logs its output,
// restarts it with exponential backoff when it dies, and stops the
// whole process group on shutdown.
//
// Example usage:
//
//	sup, err := kiosk.New(kiosk.Config{
//	    Binary: "/usr/bin/chromium",
//	    Args:   []string{"--kiosk", "{url}"},
//	    URL:    "http://127.0.0.1:8090/",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := sup.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer sup.Stop()
package kiosk
