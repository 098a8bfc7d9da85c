package serial

import (
	"strconv"
	"strings"
)

// FTDIVendorID is the USB vendor id of Future Technology Devices International
const FTDIVendorID = "0403"

// Device type tags, named after the FTDI D2XX FT_DEVICE enumeration
const (
	DeviceTypeBM      = "FT_DEVICE_BM"
	DeviceType232R    = "FT_DEVICE_232R"
	DeviceType2232H   = "FT_DEVICE_2232H"
	DeviceType4232H   = "FT_DEVICE_4232H"
	DeviceType232H    = "FT_DEVICE_232H"
	DeviceTypeXSeries = "FT_DEVICE_X_SERIES"
	DeviceTypeUnknown = "FT_DEVICE_UNKNOWN"
)

// DeviceInfo describes one enumerable serial interface, keyed by its
// USB serial number. Multi-interface chips yield one entry per interface.
type DeviceInfo struct {
	Description  string
	Type         string
	SerialNumber string
	Path         string
	VendorID     string
	ProductID    string
}

// DeviceType maps a USB vendor/product id pair to an FTDI type tag
func DeviceType(vendorID, productID string) string {
	if !strings.EqualFold(vendorID, FTDIVendorID) {
		return DeviceTypeUnknown
	}
	switch strings.ToLower(productID) {
	case "6001":
		return DeviceType232R
	case "6010":
		return DeviceType2232H
	case "6011":
		return DeviceType4232H
	case "6014":
		return DeviceType232H
	case "6015":
		return DeviceTypeXSeries
	case "6006":
		return DeviceTypeBM
	default:
		return DeviceTypeUnknown
	}
}

// isMultiInterface reports whether the chip exposes several UARTs
func isMultiInterface(deviceType string) bool {
	return deviceType == DeviceType2232H || deviceType == DeviceType4232H
}

// deviceSerial returns the identifier of one interface. Multi-interface
// chips get the interface letter appended (00 -> A, 01 -> B, ...).
func deviceSerial(info *PortInfo, deviceType string) string {
	if info.SerialNumber == "" || !isMultiInterface(deviceType) {
		return info.SerialNumber
	}
	n, err := strconv.ParseUint(info.InterfaceNumber, 16, 8)
	if err != nil || n > 25 {
		return info.SerialNumber
	}
	return info.SerialNumber + string(rune('A'+n))
}

// ListDevices enumerates USB serial interfaces that report a serial number
func ListDevices() ([]DeviceInfo, error) {
	ports, err := ListPorts()
	if err != nil {
		return nil, err
	}

	var devices []DeviceInfo
	for _, portPath := range ports {
		info, err := GetPortInfo(portPath)
		if err != nil || !info.IsUSB() || info.SerialNumber == "" {
			continue
		}
		devices = append(devices, deviceFromPortInfo(info))
	}
	return devices, nil
}

func deviceFromPortInfo(info *PortInfo) DeviceInfo {
	deviceType := DeviceType(info.VendorID, info.ProductID)
	description := info.Product
	if description == "" {
		description = info.Description
	}
	return DeviceInfo{
		Description:  description,
		Type:         deviceType,
		SerialNumber: deviceSerial(info, deviceType),
		Path:         info.Path,
		VendorID:     info.VendorID,
		ProductID:    info.ProductID,
	}
}

// FindDevice resolves a device identifier (as returned by ListDevices)
// to its port path
func FindDevice(serialNumber string) (DeviceInfo, error) {
	devices, err := ListDevices()
	if err != nil {
		return DeviceInfo{}, err
	}
	for _, d := range devices {
		if d.SerialNumber == serialNumber {
			return d, nil
		}
	}
	return DeviceInfo{}, ErrDeviceNotFound
}
