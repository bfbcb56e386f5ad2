/*
Package dbushelper provides DBus specific helpers to:
- Translate Bluez DBus device paths to Bluetooth addresses.
- Marshal a map of DBus variants to a provided struct.
- Classify DBus errors into pairing error kinds.

It also has constants defined for various Bluez bus,
property and error names.
*/
package dbushelper
