package gpt

// Type constants for the GUID for type of partition, see https://en.wikipedia.org/wiki/GUID_Partition_Table#Partition_entries
type Type string

// List of GUID partition types
const (
	Unused                   Type = "00000000-0000-0000-0000-000000000000"
	MbrBoot                  Type = "024DEE41-33E7-11D3-9D69-0008C781F39F"
	EFISystemPartition       Type = "C12A7328-F81F-11D2-BA4B-00A0C93EC93B"
	BiosBoot                 Type = "21686148-6449-6E6F-744E-656564454649"
	MicrosoftReserved        Type = "E3C9E316-0B5C-4DB8-817D-F92DF00215AE"
	MicrosoftBasicData       Type = "EBD0A0A2-B9E5-4433-87C0-68B6B72699C7"
	LinuxFilesystem          Type = "0FC63DAF-8483-4772-8E79-3D69D8477DE4"
	LinuxRaid                Type = "A19D880F-05FC-4D3B-A006-743F0F84911E"
	LinuxRootX86_64          Type = "4F68BCE3-E8CD-4DB1-96E7-FBCAF984B709"
	LinuxSwap                Type = "0657FD6D-A4AB-43C4-84E5-0933C84B4F4F"
	LinuxLVM                 Type = "E6D6D379-F507-44C2-A23C-238F2A3DF928"
	ChromeOSKernel           Type = "FE3A2A5D-4F32-41A7-B725-ACCC3285A309"
	ChromeOSRootfs           Type = "3CB8E202-3B7E-47DD-8A3C-7FF2A13CFCEC"
	AppleAPFS                Type = "7C3457EF-0000-11AA-AA11-00306543ECAC"
	AppleHFSPlus             Type = "48465300-0000-11AA-AA11-00306543ECAC"
	FreeBSDBoot              Type = "83BD6B9D-7F41-11DC-BE0B-001560B84F0F"
	FreeBSDUFS               Type = "516E7CB6-6ECF-11D6-8FF8-00022D09712B"
	AndroidBootloader        Type = "2568845D-2332-4675-BC39-8FA5A4748D15"
	AndroidBootloader2       Type = "114EAFFE-1552-4022-B26E-9B053604CF84"
	AndroidBoot              Type = "49A4D17F-93A3-45C1-A0DE-F50B2EBE2599"
	AndroidRecovery          Type = "4177C722-9E92-4AAB-8644-43502BFD5506"
	AndroidSystem            Type = "38F428E6-D326-425D-9140-6E0EA133647C"
	AndroidData              Type = "DC76DDA9-5AC1-491C-AF42-A82591580C0D"
)

// known names for display
var typeNames = map[Type]string{
	EFISystemPartition: "EFI System",
	BiosBoot:           "BIOS boot",
	MicrosoftReserved:  "Microsoft reserved",
	MicrosoftBasicData: "Microsoft basic data",
	LinuxFilesystem:    "Linux filesystem",
	LinuxRaid:          "Linux RAID",
	LinuxRootX86_64:    "Linux root (x86-64)",
	LinuxSwap:          "Linux swap",
	LinuxLVM:           "Linux LVM",
	AppleAPFS:          "Apple APFS",
	AppleHFSPlus:       "Apple HFS+",
}

// String a human readable name for the type if known, else the GUID
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return string(t)
}
