package api

import (
	"fmt"
	"net/http"

	"tailscale.com/tsweb"
)

// AttachAdminRoutes adds controller state to the /debug/ index and mounts the
// setpoint chart and a plain-text status dump under it.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.KVFunc("Teleop state", func() any { return s.status.Status().State })
	debug.KVFunc("Teleop published", func() any { return s.status.Status().Published })

	debug.Handle("teleop/chart", "Setpoint chart of the latest session", http.HandlerFunc(s.setpointChart))

	debug.HandleSilentFunc("teleop/status", func(w http.ResponseWriter, r *http.Request) {
		st := s.status.Status()
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "state %s\n", st.State)
		fmt.Fprintf(w, "seq %d\n", st.Seq)
		fmt.Fprintf(w, "attitude_trusted %v\ndepth_trusted %v\ndepth_armed %v\n", st.AttitudeTrusted, st.DepthTrusted, st.DepthArmed)
		fmt.Fprintf(w, "setpoint roll=%.2f pitch=%.2f yaw=%.2f depth=%.2f\n",
			st.Setpoint.Roll, st.Setpoint.Pitch, st.Setpoint.Yaw, st.Setpoint.Depth)
		fmt.Fprintf(w, "link_healthy %v\n", st.LinkHealthy)
		fmt.Fprintf(w, "published %d\npublish_errors %d\ndropped_inputs %d\n", st.Published, st.PublishErrors, st.DroppedInputs)
	})
}
