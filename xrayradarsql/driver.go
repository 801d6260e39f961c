package xrayradarsql

import (
	"context"
	"database/sql/driver"
)

type xrayradarDriver struct {
	originalDriver driver.Driver
	config         *config
}

var (
	_ driver.Driver        = (*xrayradarDriver)(nil)
	_ driver.DriverContext = (*xrayradarDriver)(nil)
)

func (d *xrayradarDriver) Open(name string) (driver.Conn, error) {
	conn, err := d.originalDriver.Open(name)
	if err != nil {
		return nil, err
	}
	return &xrayradarConn{originalConn: conn, config: d.config}, nil
}

// OpenConnector uses the wrapped driver's connector when it has one. Other
// drivers are opened by name on every connect.
func (d *xrayradarDriver) OpenConnector(name string) (driver.Connector, error) {
	driverContext, ok := d.originalDriver.(driver.DriverContext)
	if !ok {
		return &dsnConnector{name: name, driver: d}, nil
	}
	connector, err := driverContext.OpenConnector(name)
	if err != nil {
		return nil, err
	}
	return &xrayradarConnector{originalConnector: connector, config: d.config, driver: d}, nil
}

type xrayradarConnector struct {
	originalConnector driver.Connector
	config            *config
	driver            driver.Driver
}

func (c *xrayradarConnector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := c.originalConnector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &xrayradarConn{originalConn: conn, config: c.config}, nil
}

func (c *xrayradarConnector) Driver() driver.Driver {
	if c.driver != nil {
		return c.driver
	}
	return &xrayradarDriver{originalDriver: c.originalConnector.Driver(), config: c.config}
}

type dsnConnector struct {
	name   string
	driver *xrayradarDriver
}

func (c *dsnConnector) Connect(context.Context) (driver.Conn, error) {
	return c.driver.Open(c.name)
}

func (c *dsnConnector) Driver() driver.Driver {
	return c.driver
}
