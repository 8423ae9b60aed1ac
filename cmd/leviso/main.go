// Command leviso drives the LevitateOS build pipeline end to end:
// preflight checks, rootfs assembly, kernel build, both initramfs
// variants, and the final squashfs/EROFS + ISO + checksum artifacts.
//
// Grounded on bitswalk-ldf's cobra/viper CLI layering (src/ldfctl/internal/cmd),
// adapted from an API-client CLI to a local build-pipeline driver.
package main

func main() {
	Execute()
}
