package gptfixup_test

import (
	"io"
	"log"
	"os"

	gptfixup "github.com/diskfs/go-gptfixup"
)

func check(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

// Write an xz compressed image to an SD card, check it was written correctly, and grow its GPT to the size of the card.
func ExampleFlash() {
	img, err := os.Open("/tmp/raspios.img.xz")
	check(err)
	defer img.Close()

	result, err := gptfixup.Flash(img, "/dev/mmcblk0", gptfixup.WithVerify(true))
	check(err)
	log.Printf("GPT now ends at LBA %d, was %d", result.BackupHeaderLBA, result.OldBackupHeaderLBA)
}

// Fix up a device that an image was written to with dd.
func ExampleFixup() {
	_, err := gptfixup.Fixup("/dev/sdb", gptfixup.WithSectorSize(512))
	check(err)
}

// Replace the contents of the rootfs partition with a filesystem image.
func ExampleOpenPartition() {
	rootfs, err := os.Open("/tmp/rootfs.ext4")
	check(err)
	defer rootfs.Close()

	p, err := gptfixup.OpenPartition("/dev/sdb", "rootfs")
	check(err)
	defer p.Close()

	_, err = io.Copy(p, rootfs)
	check(err)
	check(p.Sync())
}

// List the partitions on a device, and whether its GPT needs a fixup.
func ExampleReadTable() {
	table, fixable, err := gptfixup.ReadTable("/dev/sdb")
	check(err)
	if fixable != nil {
		log.Printf("needs a fixup: %v", fixable)
	}
	for _, p := range table.Partitions {
		log.Printf("%d %s %d bytes", p.Index, p.Name, p.Size)
	}
}
