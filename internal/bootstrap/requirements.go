package bootstrap

// SelfVersion is bumped whenever the private environment needs to be
// rebuilt, for instance when SelfRequirements changes.
const SelfVersion = 4

// PinnedPip is the installer version put into the private environment.
const PinnedPip = "pip==24.2"

// SelfRequirements is installed into the private environment.
const SelfRequirements = `build==1.2.2
certifi==2024.8.30
charset-normalizer==3.4.0
click==8.1.7
distlib==0.3.9
filelock==3.16.1
idna==3.10
packaging==24.1
platformdirs==4.3.6
pyproject_hooks==1.2.0
requests==2.32.3
tomli==2.0.2
twine==5.1.1
unearth==0.17.2
urllib3==2.2.3
virtualenv==20.27.0
ruff==0.7.0
`
