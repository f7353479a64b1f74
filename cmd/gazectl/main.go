// Command gazectl tracks where the user is looking through a webcam and
// transcribes speech from a microphone.
//
// Usage:
//
//	gazectl track [--headless|--gui] [--calibrate] [--serve addr]
//	gazectl monitors
//	gazectl calibration list|show|plot|clear
//	gazectl transcribe [--engine whisper|google] [--file path]
//	gazectl watch [addr]
package main

func main() {
	Execute()
}
