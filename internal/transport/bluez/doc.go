// Package bluez opens RFCOMM Serial Port Profile streams through the BlueZ
// D-Bus API.
//
// A client-role Profile1 object is exported on the system bus and registered
// for the SPP UUID; BlueZ then delivers the connected socket through
// Profile1.NewConnection once Device1.ConnectProfile succeeds. Ownership of
// the delivered descriptor passes to the returned connection.
//
// Only Linux is supported. On other platforms Dial and Scan return
// ErrUnsupported.
package bluez
