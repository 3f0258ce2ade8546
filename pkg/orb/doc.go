// Package orb renders the assistant's animated presence indicator.
//
// An orb is one of twelve interchangeable variants that share the
// [Visualizer] contract. Every variant reacts to exactly one energy source
// per frame: the playback amplitude while speaking, the microphone volume
// while listening, and its own idle phase otherwise.
//
// # Usage
//
//	surface, err := orb.NewSurface(400, 400, nil)
//	if err != nil {
//		return err
//	}
//	coord, err := orb.NewCoordinator(surface, orb.Fluid)
//	if err != nil {
//		return err
//	}
//	defer coord.Stop()
//
//	coord.SetListening(true)
//	coord.UpdateMicVolume(0.4)
//
// Frames are drawn with fogleman/gg onto the Surface by a Ticker owned by
// the live instance. Swapping variants stops the old ticker before the new
// one is started, so a surface never has two draw loops.
package orb
